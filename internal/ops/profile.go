package ops

import (
	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

type profileLogger struct{}

func (profileLogger) Infof(format string, args ...any)  { logs.Debugf(format, args...) }
func (profileLogger) Debugf(format string, args ...any) { logs.Debugf(format, args...) }
func (profileLogger) Errorf(format string, args ...any) { logs.Warnf(format, args...) }

// StartProfiler starts continuous profiling when a server address is configured.
// The returned func stops it and is never nil.
func StartProfiler(cfg ProfileConfig, tags map[string]string) (func(), error) {
	if cfg.ServerAddress == "" {
		return func() {}, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Tags:            tags,
		Logger:          profileLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "start pyroscope").With("server", cfg.ServerAddress)
	}
	return func() { _ = profiler.Stop() }, nil
}
