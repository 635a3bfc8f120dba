// Package autoload initializes the global logger from LOG_* environment variables on import.
package autoload

import (
	configx "github.com/tanpawarit/ops-desk/pkg/config"
	logx "github.com/tanpawarit/ops-desk/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}
