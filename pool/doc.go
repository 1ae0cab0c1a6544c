// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable byte buffers for the reactor read path and the DCP stream plumbing.
package pool
