package sql

import "github.com/m-mizutani/goerr/v2"

// ErrNotFound is returned by token lookups that miss
var ErrNotFound = goerr.New("not found")
