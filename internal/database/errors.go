package database

import "errors"

// ErrClusterJobActive is returned by Enqueue when a cluster job for the
// same project is already queued or running. Cluster jobs mutate the whole
// face/cluster table set for a project and must never run concurrently.
var ErrClusterJobActive = errors.New("a cluster job for this project is already queued or running")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")
