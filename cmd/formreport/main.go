// formreport turns filled-in report forms into PDF or spreadsheet documents
// and exports them for download or to Google Sheets and Google Drive.
//
// Usage:
//
//	formreport serve
//	formreport fill <kind>
//	formreport render <kind> -v values.yaml
//	formreport inspect extract <file.pdf>
//	formreport history
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
