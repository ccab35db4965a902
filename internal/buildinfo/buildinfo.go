package buildinfo

// These are set at build time via -ldflags, for example:
//
//	-X github.com/nebula-panel/static-delete/internal/buildinfo.Version=v1.0.0
//	-X github.com/nebula-panel/static-delete/internal/buildinfo.GitSHA=abc123
var (
	Version   = "dev"
	GitSHA    = ""
	BuildTime = ""
)

const Name = "nebula-static-delete"

// ServerIdent is shown in generated page footers.
func ServerIdent() string {
	return Name + "/" + Version
}

func String() string {
	s := ServerIdent()
	if GitSHA != "" {
		s += " (" + GitSHA + ")"
	}
	if BuildTime != "" {
		s += " built " + BuildTime
	}
	return s
}
