// Package migrations embute o esquema do banco para o goose.
package migrations

import "embed"

// FS contém os arquivos de migração SQL, aplicados em ordem de versão.
//
//go:embed *.sql
var FS embed.FS
