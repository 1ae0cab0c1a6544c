// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the OS event reactor behind api.Reactor and its
// platform backends: io_uring and epoll (Linux), kqueue (macOS and BSDs) and
// IOCP (Windows). New picks the backend for the running platform; callers only
// ever see api.Reactor.
package reactor
