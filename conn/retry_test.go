package conn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTransientClassifier_Deadlock(t *testing.T) {
	assert.True(t, DefaultTransientClassifier(errors.New("mssql: error 1205: transaction was deadlocked")))
	assert.True(t, DefaultTransientClassifier(errors.New("ORA-00060: deadlock detected while waiting for resource")))
	assert.True(t, DefaultTransientClassifier(errors.New("connection reset by peer")))
}

func TestDefaultTransientClassifier_NonTransient(t *testing.T) {
	assert.False(t, DefaultTransientClassifier(errors.New("Login failed for user 'app'")))
	assert.False(t, DefaultTransientClassifier(errors.New("Invalid column name 'Foo'")))
	assert.False(t, DefaultTransientClassifier(nil))
}

func TestRetryRead_RetriesOnlyTransient(t *testing.T) {
	calls := 0
	err := RetryRead(testContext(t), testConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryRead_StopsOnNonTransient(t *testing.T) {
	calls := 0
	err := RetryRead(testContext(t), testConfig(), func() error {
		calls++
		return errors.New("syntax error near SELECT")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
