package jobqueue

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// seenSet remembers the ids of recently forwarded envelopes.
type seenSet struct {
	lru *lru.Cache[string, struct{}]
}

func newSeenSet(size int) *seenSet {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, struct{}](size)
	return &seenSet{lru: c}
}

func (s *seenSet) seen(id string) bool { return s.lru.Contains(id) }

func (s *seenSet) remember(id string) { s.lru.Add(id, struct{}{}) }
