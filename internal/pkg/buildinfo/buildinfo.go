package buildinfo

// Version 在 Release 构建时通过 -ldflags 注入，例如：
// -X github.com/fly2outerspace/NeoChat/internal/pkg/buildinfo.Version=v0.1.0
var Version = "v0.1.0-dev"

// Commit 在 Release 构建时可选注入 git commit，例如：
// -X github.com/fly2outerspace/NeoChat/internal/pkg/buildinfo.Commit=abcdef1
var Commit = "unknown"

// String 版本描述，用于 CLI 与 /health
func String() string {
	if Commit == "" || Commit == "unknown" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
