package serializer

import (
	"github.com/dustin/go-humanize"
	"github.com/mdouchement/padbank/internal/service"
)

// Import returns the serialized form of an import result.
func Import(result *service.ImportResult) map[string]interface{} {
	return map[string]interface{}{
		"bank":      BankSummary(result.Bank),
		"imported":  result.Imported,
		"skipped":   result.Skipped,
		"encrypted": result.Encrypted,
	}
}

// Export returns the serialized form of an export stored in the archive storage.
func Export(export *service.Export) map[string]interface{} {
	m := map[string]interface{}{
		"filename":  export.Filename,
		"size":      len(export.Data),
		"encrypted": export.Encrypted,
		"trimmed":   export.Trimmed,
		"fallbacks": export.Fallbacks,
		"reused":    export.Reused,
	}
	if export.BankID != "" {
		m["bank_id"] = export.BankID
	}
	return m
}

// Quota returns the serialized form of the quota ledger.
func Quota(quota service.Quota) map[string]interface{} {
	return map[string]interface{}{
		"usage":         quota.Usage,
		"ceiling":       quota.Ceiling,
		"human_usage":   humanize.IBytes(uint64(quota.Usage)),
		"human_ceiling": humanize.IBytes(uint64(quota.Ceiling)),
	}
}
