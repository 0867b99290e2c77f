package config

import (
	"strconv"
	"strings"
	"time"
)

type GateConfig interface {
	GetMaxAttempts() int
	GetLockoutDuration() time.Duration
	GetCodeLength() int
	GetCodeValidity() time.Duration
	GetSessionLifetime() time.Duration
	GetResendCooldown() time.Duration
	GetRevalidateInterval() time.Duration
}

type Gate struct{}

var _ GateConfig = Gate{}

func (Gate) GetMaxAttempts() int {
	if v, err := strconv.Atoi(GetEnv("GATE_MAX_ATTEMPTS", "3")); err == nil && v > 0 {
		return v
	}
	return 3
}

func (Gate) GetLockoutDuration() time.Duration {
	return getDuration("GATE_LOCKOUT_MINUTES", 15 * time.Minute)
}

func (Gate) GetCodeLength() int {
	return 6
}

func (Gate) GetCodeValidity() time.Duration {
	return getDuration("GATE_CODE_VALIDITY_MINUTES", 5 * time.Minute)
}

func (Gate) GetSessionLifetime() time.Duration {
	return getDuration("GATE_SESSION_LIFETIME_MINUTES", 2 * time.Hour)
}

func (Gate) GetResendCooldown() time.Duration {
	return getDuration("GATE_RESEND_COOLDOWN_SECONDS", 30 * time.Second)
}

func (Gate) GetRevalidateInterval() time.Duration {
	return time.Minute
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return defaultValue
	}
	if strings.HasSuffix(envVar, "SECONDS") {
		return time.Duration(v) * time.Second
	}
	return time.Duration(v) * time.Minute
}
