package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions_DSN_DefaultsPort(t *testing.T) {
	opts := Options{Host: "db.internal", Service: "ORCLPDB1", User: "svc", Password: "secret"}
	dsn := opts.DSN()
	assert.Contains(t, dsn, "db.internal")
	assert.Contains(t, dsn, "1521")
	assert.Contains(t, dsn, "ORCLPDB1")
}

func TestOptions_DSN_HonorsExplicitPort(t *testing.T) {
	opts := Options{Host: "db.internal", Port: 1522, Service: "ORCLPDB1", User: "svc", Password: "secret"}
	assert.Contains(t, opts.DSN(), "1522")
}
