package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && !conf.TestMode && conf.RollbarToken != "")
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close waits for queued reports to be sent.
func (l RollbarLogger) Close() {
	rollbar.Wait()
}

// prepare turns the log args into rollbar args.
// expected fmt: msg | error, map[string]interface{}, access.Caller
// The first caller becomes the rollbar person; its origin and the error kind go to the custom data.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		caller    *access.Caller
		custom    = make(map[string]interface{})
		newArgs   = make([]interface{}, 0, len(args)+2)
		hasCustom bool
	)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case access.Caller:
			if caller == nil {
				c := v
				caller = &c
			}
		case error:
			custom["kind"] = core.Kind(v)
			hasCustom = true
			newArgs = append(newArgs, v)
		case map[string]interface{}:
			for k, val := range v {
				custom[k] = val
			}
			hasCustom = true
		default:
			newArgs = append(newArgs, arg)
		}
	}

	if caller != nil {
		rollbar.SetPerson(caller.PersonID, string(caller.Role), "")
		if caller.Origin != "" {
			custom["origin"] = caller.Origin
			hasCustom = true
		}
	} else {
		rollbar.ClearPerson()
	}
	if hasCustom {
		newArgs = append(newArgs, custom)
	}
	return newArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
