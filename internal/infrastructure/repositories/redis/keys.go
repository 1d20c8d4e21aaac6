package redis

import "userhub/internal/core/domain"

type keyspace struct {
	prefix string
}

func (k keyspace) user(id domain.UserID) string { return k.prefix + "user:" + string(id) }
func (k keyspace) ids() string                 { return k.prefix + "users" }
func (k keyspace) emailIndex() string          { return k.prefix + "idx:email" }
func (k keyspace) nameIndex() string           { return k.prefix + "idx:name" }
func (k keyspace) schemaVersion() string       { return k.prefix + "schema:version" }
