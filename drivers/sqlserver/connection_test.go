package sqlserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions_DSN_DefaultsPort(t *testing.T) {
	opts := Options{Host: "db.internal", Database: "orders", User: "svc", Password: "secret"}
	assert.Equal(t, "server=db.internal;port=1433;database=orders;user id=svc;password=secret", opts.DSN())
}

func TestOptions_DSN_HonorsExplicitPort(t *testing.T) {
	opts := Options{Host: "db.internal", Port: 14330, Database: "orders", User: "svc", Password: "secret"}
	assert.Equal(t, "server=db.internal;port=14330;database=orders;user id=svc;password=secret", opts.DSN())
}
