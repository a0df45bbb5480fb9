// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness poller the relay's dispatch loop
// blocks on. The Linux implementation is edge-triggered epoll with an eventfd
// used to interrupt a blocked Wait from other goroutines.
package reactor
