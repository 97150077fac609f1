// =============================================================================
// Sales ETL - Main Entry Point
// =============================================================================
//
// USAGE:
//   salesetl run       - Extract, transform and load the sales exports
//   salesetl report    - Export the sales table to XLSX
//   salesetl version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Pipeline stages and supporting packages
//   - pkg/utils      : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/sales-etl/cmd"
)

func main() {
	cmd.Execute()
}
