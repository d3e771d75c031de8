package sqlgen

import (
	"reflect"
	"testing"

	"github.com/nahmadov/dapperforge/dialect"
	"github.com/nahmadov/dapperforge/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type genUser struct {
	Id       int
	Username string
	IsActive bool
}

func testMapping(t *testing.T) *mapping.EntityMapping {
	t.Helper()
	reg := mapping.NewRegistry()
	reg.Configure(reflect.TypeOf(genUser{}),
		mapping.Table("Users"),
		mapping.Column("Username", "username"),
		mapping.Identity("Id"),
	)
	em, err := reg.Resolve(reflect.TypeOf(genUser{}))
	require.NoError(t, err)
	return em
}

func TestGenerator_SqlServer(t *testing.T) {
	em := testMapping(t)
	g, err := New(em, dialect.SqlServer{})
	require.NoError(t, err)

	assert.Equal(t, `SELECT a.[Id] AS [Id], a.[username] AS [Username], a.[IsActive] AS [IsActive] FROM [Users] AS a`, g.SelectAll)
	assert.Equal(t, g.SelectAll+" WHERE a.[Id] = @Id", g.SelectById)
	assert.Equal(t, `INSERT INTO [Users] ([username],[IsActive]) VALUES (@Username,@IsActive)`, g.Insert)
	assert.True(t, g.IsKeyGenerated)
	assert.Contains(t, g.InsertReturningId, "SCOPE_IDENTITY()")
	assert.Equal(t, `UPDATE [Users] SET [username] = @Username, [IsActive] = @IsActive WHERE [Id] = @Id`, g.Update)
	assert.Equal(t, `DELETE FROM [Users] WHERE [Id] = @Id`, g.DeleteById)
}

func TestGenerator_NoMutableColumns_UpdateEmpty(t *testing.T) {
	reg := mapping.NewRegistry()
	type onlyKey struct{ Id int }
	reg.Configure(reflect.TypeOf(onlyKey{}), mapping.Identity("Id"))
	em, err := reg.Resolve(reflect.TypeOf(onlyKey{}))
	require.NoError(t, err)

	g, err := New(em, dialect.SqlServer{})
	require.NoError(t, err)
	assert.Empty(t, g.Update)
}

func TestGenerator_Sequence_UsesNextVal(t *testing.T) {
	reg := mapping.NewRegistry()
	type seqEntity struct {
		Id   int
		Name string
	}
	reg.Configure(reflect.TypeOf(seqEntity{}), mapping.Sequence("Id", "seq_entity_id"))
	em, err := reg.Resolve(reflect.TypeOf(seqEntity{}))
	require.NoError(t, err)

	g, err := New(em, dialect.Oracle{})
	require.NoError(t, err)
	assert.Contains(t, g.Insert, `"seq_entity_id".NEXTVAL`)
	assert.True(t, g.IsKeyGenerated)
}
