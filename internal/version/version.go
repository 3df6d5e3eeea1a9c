package version

import "fmt"

// Заполняются через -ldflags при сборке релиза.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает семантическую версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хеш коммита сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
