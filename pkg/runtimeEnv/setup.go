// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package runtimeEnv holds small OS-integration helpers used by the tts
// server: dropping privileges after a privileged bind, and reporting
// readiness to systemd.
package runtimeEnv

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/ClusterCockpit/tts/pkg/log"
)

// DropPrivileges switches the process's group and then user to the named
// ones, in that order (group first, since giving up the user's privilege
// first would usually leave insufficient rights to change the group). The
// Go runtime applies the underlying setuid/setgid syscalls to every OS
// thread, not just the calling one, so there's no window where some
// goroutines keep the original credentials.
func DropPrivileges(username string, group string) error {
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			log.Warnf("runtimeEnv: looking up group %q: %s", group, err)
			return err
		}

		gid, _ := strconv.Atoi(g.Gid)
		if err := syscall.Setgid(gid); err != nil {
			log.Warnf("runtimeEnv: setgid(%d): %s", gid, err)
			return err
		}
	}

	if username != "" {
		u, err := user.Lookup(username)
		if err != nil {
			log.Warnf("runtimeEnv: looking up user %q: %s", username, err)
			return err
		}

		uid, _ := strconv.Atoi(u.Uid)
		if err := syscall.Setuid(uid); err != nil {
			log.Warnf("runtimeEnv: setuid(%d): %s", uid, err)
			return err
		}
	}

	return nil
}

// SystemdNotify tells systemd the process is ready (or reports a status
// string), via sd_notify's systemd-notify shim:
// https://www.freedesktop.org/software/systemd/man/sd_notify.html
// A no-op outside of a systemd-managed unit (NOTIFY_SOCKET unset).
func SystemdNotify(ready bool, status string) {
	if os.Getenv("NOTIFY_SOCKET") == "" {
		return
	}

	args := []string{fmt.Sprintf("--pid=%d", os.Getpid())}
	if ready {
		args = append(args, "--ready")
	}
	if status != "" {
		args = append(args, fmt.Sprintf("--status=%s", status))
	}

	cmd := exec.Command("systemd-notify", args...)
	cmd.Run() // errors ignored, there is not much to do about a notify failure
}
