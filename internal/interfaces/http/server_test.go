package http

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/config"
)

func serverConfig(port int) config.ServerConfig {
	return config.ServerConfig{Port: port, ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second}
}

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(config.ServerConfig{Port: 8080}, nil, nil)
	assert.Equal(t, ":8080", s.Addr())
	assert.Equal(t, 30*time.Second, s.shutdownTimeout)
	assert.Equal(t, 60*time.Second, s.srv.IdleTimeout)
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(serverConfig(0), NewRouter(RouterConfig{}), nil)
	assert.Equal(t, ":0", s.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSetMode(t *testing.T) {
	defer gin.SetMode(gin.TestMode)

	SetMode("release")
	assert.Equal(t, gin.ReleaseMode, gin.Mode())
	SetMode("bogus")
	assert.Equal(t, gin.ReleaseMode, gin.Mode())
	SetMode("debug")
	assert.Equal(t, gin.DebugMode, gin.Mode())
}

//Personal.AI order the ending
