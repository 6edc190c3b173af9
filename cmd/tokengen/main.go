// Command tokengen mints a development access token for the document server.
//
//	tokengen -u <uid> [-e email] [-s secret] [-t minutes] [-c config.json]
//
// The secret and validity default to the server configuration (including a
// JSON file given with -c).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/auth"
	"github.com/dmitrijs2005/commissionsync/internal/flagx"
	"github.com/dmitrijs2005/commissionsync/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	fs := flag.NewFlagSet("tokengen", flag.ExitOnError)
	uid := fs.String("u", "", "user id (required)")
	email := fs.String("e", "", "e-mail claim")
	_ = flagx.Parse(fs, os.Args[1:])

	if *uid == "" {
		fs.Usage()
		os.Exit(2)
	}

	token, err := auth.GenerateToken(*uid, *email, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "valid until %s\n", time.Now().Add(cfg.AccessTokenValidityDuration).Format(time.RFC3339))
}
