package syncsvc

import "sync"

// keyedMutex serializes work per record key. Holders are served strictly in
// the order their place was reserved. Entries are dropped once nobody holds
// or waits for them.
type keyedMutex struct {
	mu     sync.Mutex
	queues map[string][]chan struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{queues: make(map[string][]chan struct{})}
}

// Reserve takes the next place in key's queue without blocking. The returned
// func blocks until that place reaches the front and returns the unlock.
// Every reservation must be waited on and unlocked.
func (k *keyedMutex) Reserve(key string) func() (unlock func()) {
	turn := make(chan struct{})

	k.mu.Lock()
	q := k.queues[key]
	if len(q) == 0 {
		close(turn)
	}
	k.queues[key] = append(q, turn)
	k.mu.Unlock()

	return func() func() {
		<-turn
		var once sync.Once
		return func() { once.Do(func() { k.release(key) }) }
	}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	return k.Reserve(key)()
}

func (k *keyedMutex) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	q := k.queues[key][1:]
	if len(q) == 0 {
		delete(k.queues, key)
		return
	}
	k.queues[key] = q
	close(q[0])
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.queues)
}
