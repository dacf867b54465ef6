// Package naming derives the canonical archive file path for a sample's
// identity tuple.
package naming

import (
	"strings"

	"github.com/xtxerr/rrdsink/config"
	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/schema"
)

// Filename maps an identity tuple to its archive path:
//
//	{datadir/}host/plugin[-plugin_instance]/type[-type_instance].rrd
//
// Derivation is purely textual and deterministic; separator characters inside
// the fields are not sanitized here, producers are responsible for clean
// identifiers. Paths of config.MaxFilenameLen bytes or more are rejected.
func Filename(datadir string, sch *schema.Schema, smp *schema.Sample) (string, error) {
	var b strings.Builder

	if datadir != "" {
		b.WriteString(datadir)
		b.WriteByte('/')
	}

	b.WriteString(smp.Host)
	b.WriteByte('/')

	b.WriteString(smp.Plugin)
	if smp.PluginInstance != "" {
		b.WriteByte('-')
		b.WriteString(smp.PluginInstance)
	}
	b.WriteByte('/')

	b.WriteString(sch.Type)
	if smp.TypeInstance != "" {
		b.WriteByte('-')
		b.WriteString(smp.TypeInstance)
	}
	b.WriteString(".rrd")

	if b.Len() >= config.MaxFilenameLen {
		return "", errors.Wrap(errors.ErrPathTooLong, "%d bytes (must be under %d)", b.Len(), config.MaxFilenameLen)
	}

	return b.String(), nil
}
