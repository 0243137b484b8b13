// Package migrations embeds the SQL schema migrations into the binary
// and registers them with the database package.
package migrations

import (
	"embed"

	"github.com/roverlink/gnsslaunch/internal/infrastructure/database"
)

//go:embed *.sql
var fsys embed.FS

func init() {
	database.MigrationsFS = fsys
	database.MigrationsDir = "."
}
