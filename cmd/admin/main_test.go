package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBootstrapper struct {
	email, password, first, last string
	err                          error
}

func (s *stubBootstrapper) BootstrapAdmin(_ context.Context, email, password, first, last string) error {
	s.email, s.password, s.first, s.last = email, password, first, last
	return s.err
}

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no input")
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
}

func connectTo(svc *stubBootstrapper, closed *bool) connectFunc {
	return func(context.Context) (adminBootstrapper, func() error, error) {
		return svc, func() error { *closed = true; return nil }, nil
	}
}

func TestRun_CreateAdmin(t *testing.T) {
	stubPasswords(t, "hunter22", "hunter22")
	svc := &stubBootstrapper{}
	var closed bool
	var out bytes.Buffer

	err := run(context.Background(), []string{"create-admin", "-email", "Ops@Example.com", "-first", "Ada"}, &out, connectTo(svc, &closed))
	require.NoError(t, err)

	assert.Equal(t, "Ops@Example.com", svc.email)
	assert.Equal(t, "hunter22", svc.password)
	assert.Equal(t, "Ada", svc.first)
	assert.Equal(t, "User", svc.last)
	assert.True(t, closed)
	assert.Contains(t, out.String(), "admin ops@example.com is ready")
}

func TestRun_Errors(t *testing.T) {
	var closed bool
	svc := &stubBootstrapper{}

	err := run(context.Background(), nil, &bytes.Buffer{}, connectTo(svc, &closed))
	assert.ErrorContains(t, err, "usage")

	err = run(context.Background(), []string{"create-admin"}, &bytes.Buffer{}, connectTo(svc, &closed))
	assert.ErrorContains(t, err, "-email is required")

	stubPasswords(t, "hunter22", "hunter23")
	err = run(context.Background(), []string{"create-admin", "-email", "ops@example.com"}, &bytes.Buffer{}, connectTo(svc, &closed))
	assert.ErrorContains(t, err, "do not match")

	stubPasswords(t, "abc", "abc")
	err = run(context.Background(), []string{"create-admin", "-email", "ops@example.com"}, &bytes.Buffer{}, connectTo(svc, &closed))
	assert.ErrorContains(t, err, "at least 6")

	assert.False(t, closed)
}

func TestRun_BootstrapFailure(t *testing.T) {
	stubPasswords(t, "hunter22", "hunter22")
	svc := &stubBootstrapper{err: errors.New("db down")}
	var closed bool

	err := run(context.Background(), []string{"create-admin", "-email", "ops@example.com"}, &bytes.Buffer{}, connectTo(svc, &closed))
	assert.ErrorContains(t, err, "create admin: db down")
	assert.True(t, closed)
}
