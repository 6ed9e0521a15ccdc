package config

import "time"

// HTTPConfig configures the submission API listener.
type HTTPConfig struct {
	Addr string `env:"HTTP_ADDR" envDefault:":8001"`
	// MaxBodyBytes caps a submission body; larger requests get 413.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`

	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT"  envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT"  envDefault:"2m"`
	// ShutdownTimeout bounds the drain of in-flight requests on stop.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (h *HTTPConfig) Sanitize() {
	h.Addr = orDefault(h.Addr, ":8001")
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = 1 << 20
	}
	for _, d := range []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&h.ReadTimeout, 30 * time.Second},
		{&h.WriteTimeout, 30 * time.Second},
		{&h.IdleTimeout, 2 * time.Minute},
		{&h.ShutdownTimeout, 10 * time.Second},
	} {
		if *d.v <= 0 {
			*d.v = d.def
		}
	}
}
