// Package version reports the relay's build identity. Values are stamped
// at link time:
//
//	go build -ldflags "-X github.com/kbukum/voxrelay/version.Version=1.4.0 \
//	    -X github.com/kbukum/voxrelay/version.Commit=$(git rev-parse --short HEAD)"
//
// Anything left unset falls back to the module's embedded VCS settings.
package version
