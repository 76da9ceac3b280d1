package mainboilerplate

import (
	log "github.com/sirupsen/logrus"
)

// Version and BuildDate of the application, set at link time with eg
// `-ldflags "-X go.gazette.dev/streams/mainboilerplate.Version=v1.2.3"`.
var (
	Version   = "development"
	BuildDate = "unknown"
)

// Must panics if |err| is non-nil, supplying |msg| and |extra| as
// formatter and fields of the generated panic.
func Must(err error, msg string, extra ...interface{}) {
	if err == nil {
		return
	}
	var f = log.Fields{"err": err}
	for i := 0; i+1 < len(extra); i += 2 {
		f[extra[i].(string)] = extra[i+1]
	}
	log.WithFields(f).Panic(msg)
}
