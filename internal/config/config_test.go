package config

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN_AddsParseTime(t *testing.T) {
	out, err := normalizeDSN("app:secret@tcp(127.0.0.1:3306)/summitpass?charset=utf8mb4")
	require.NoError(t, err)

	mc, err := mysql.ParseDSN(out)
	require.NoError(t, err)
	assert.True(t, mc.ParseTime)
	assert.Equal(t, "summitpass", mc.DBName)
	assert.Equal(t, "app", mc.User)
	assert.Equal(t, "secret", mc.Passwd)
	assert.Equal(t, "127.0.0.1:3306", mc.Addr)
	assert.Contains(t, out, "charset=utf8mb4")
}

func TestNormalizeDSN_KeepsExplicitParseTime(t *testing.T) {
	in := "app:secret@tcp(db:3306)/summitpass?parseTime=true&loc=Local"
	out, err := normalizeDSN(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNormalizeDSN_Invalid(t *testing.T) {
	_, err := normalizeDSN("app:secret@tcp(db:3306)summitpass")
	require.Error(t, err)
}

func TestLoad_NormalizesDSN(t *testing.T) {
	t.Setenv("DB_DSN", "app:secret@tcp(db:3306)/summitpass")

	cfg, err := Load()
	require.NoError(t, err)

	mc, err := mysql.ParseDSN(cfg.DB.DSN)
	require.NoError(t, err)
	assert.True(t, mc.ParseTime)
}

func TestLoad_RequiresDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")
	_, err := Load()
	require.Error(t, err)
}
