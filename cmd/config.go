package main

import "time"

type Config struct {
	BadgerFilepath      string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel            string        `env:"LOG_LEVEL,default=info"`
	Host                string        `env:"HOST,default=localhost"`
	Port                int           `env:"PORT,default=5000"`
	TickInterval        time.Duration `env:"TICK_INTERVAL,default=1.5s"`
	StaleAfter          time.Duration `env:"STALE_AFTER,default=10s"`
	DefaultMessageLimit int           `env:"DEFAULT_MESSAGE_LIMIT,default=10"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,default=200ms"`
}
