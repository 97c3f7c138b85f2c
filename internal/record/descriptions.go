package record

import "strings"

// wellKnownNames maps SQL database metric keys to their long display names.
// Used when an exported record carries no display_name of its own.
var wellKnownNames = map[string]string{
	"cpu_percent":                      "CPU Percentage",
	"physical_data_read_percent":       "Data IO Percentage",
	"log_write_percent":                "Log IO Percentage",
	"dtu_consumption_percent":          "DTU Percentage",
	"dtu_used":                         "DTU Used",
	"dtu_limit":                        "DTU Limit",
	"storage":                          "Data Space Used (bytes)",
	"storage_percent":                  "Data Space Used Percentage",
	"xtp_storage_percent":              "In-Memory OLTP Storage Percentage",
	"workers_percent":                  "Workers Percentage",
	"sessions_percent":                 "Sessions Percentage",
	"sessions_count":                   "Sessions Count",
	"availability":                     "Availability",
	"connection_successful":            "Successful Connections",
	"connection_failed":                "Failed Connections",
	"blocked_by_firewall":              "Blocked by Firewall",
	"deadlock":                         "Deadlocks",
	"cpu_used":                         "CPU Used",
	"cpu_limit":                        "CPU Limit",
	"allocated_data_storage":           "Allocated Data Storage (bytes)",
	"sqlserver_process_core_percent":   "SQL Server Process Core Percent",
	"sqlserver_process_memory_percent": "SQL Server Process Memory Percent",
	"tempdb_data_size":                 "TempDB Data Size",
	"tempdb_log_size":                  "TempDB Log Size",
	"tempdb_log_used_percent":          "TempDB Log Used Percent",
	"app_cpu_billed":                   "App CPU Billed",
	"app_cpu_percent":                  "App CPU Percent",
	"app_memory_percent":               "App Memory Percent",
	"full_backup_size_bytes":           "Full Backup Size (bytes)",
	"diff_backup_size_bytes":           "Differential Backup Size (bytes)",
	"log_backup_size_bytes":            "Log Backup Size (bytes)",
	"snapshot_backup_size_bytes":       "Snapshot Backup Size (bytes)",
	"base_blob_size_bytes":             "Base Blob Size (bytes)",
}

// DisplayNameFor returns the well-known display name for a metric key,
// falling back to the key itself.
func DisplayNameFor(key string) string {
	if name, ok := wellKnownNames[key]; ok {
		return name
	}

	return key
}

// ShortResourcePath collapses a long hierarchical resource identifier to
// its SERVER/DATABASE pair when those segments are present. Anything that
// does not match is returned unchanged.
func ShortResourcePath(resourceID string) string {
	parts := strings.Split(strings.ToUpper(resourceID), "/")

	srv := -1
	db := -1

	for i, p := range parts {
		switch p {
		case "SERVERS":
			srv = i
		case "DATABASES":
			db = i
		}
	}

	if srv < 0 || db < 0 || srv+1 >= len(parts) || db+1 >= len(parts) {
		return resourceID
	}

	return parts[srv+1] + "/" + parts[db+1]
}
