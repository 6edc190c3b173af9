// Package common contains constants and sentinel errors shared by the client
// sync engine and the document server.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Collection names of the remote document store.
const (
	CollectionProjects = "projects"
	CollectionFixtures = "fixtures"
	CollectionOrgs     = "orgs"
)

// OwnerField is the identity-scoping field written on every remote document.
const OwnerField = "ownerUid"
