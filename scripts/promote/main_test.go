package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	_ "github.com/linkwave/portal/testing"
)

func TestRunRequiresEmail(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage: promote")
}

func TestRunReportsUnknownAccount(t *testing.T) {
	t.Setenv("ACCOUNT_STORE", "memory")
	t.Setenv("PG_DSN", "")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-email", "ghost@isp.net"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "not found")
	assert.Empty(t, stdout.String())
}
