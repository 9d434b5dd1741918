// Package binary downloads, verifies and installs executables: the codex
// binary on update and the launcher itself on self-update.
//
// # Install Flow
//
// Every install runs inside a private temporary directory that is removed on
// success and failure alike:
//
//  1. Download the asset through the shared HTTP client.
//  2. Verify it: a SHA-256 digest when one is declared (mandatory for the
//     launcher), and a detached OpenPGP signature when a keyring is
//     configured and the release publishes one.
//  3. Extract .tar.gz and .zip archives and locate the first regular file
//     named codex*. Other assets are the binary itself.
//  4. Mark it executable and move it over the target. A writable target
//     directory gets an atomic rename; otherwise `sudo -n install` is used
//     when escalation is available. Without either, nothing is touched.
//
// # Usage
//
//	inst, err := binary.NewInstaller(binary.Config{Client: client, Sudo: privs.Sudo})
//	if err != nil {
//	    return err
//	}
//	res, err := inst.Install(ctx, binary.Request{
//	    Target:    "/usr/local/bin/codex",
//	    URL:       asset.URL,
//	    AssetName: asset.Name,
//	    Version:   asset.Version,
//	})
package binary
