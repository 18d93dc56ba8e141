package csvimport

import (
	"io"

	"github.com/wms/backend/internal/domain/allocation"
)

// Inventory upload column aliases. ERP exports are not consistent about
// header naming, so each logical column accepts a few spellings.
var (
	productCodeAliases = []string{"product_code", "product", "code", "item_code", "sku"}
	warehouseAliases   = []string{"warehouse", "warehouse_code", "wh"}
	locationAliases    = []string{"location", "location_code", "loc", "bin"}
	lotAliases         = []string{"lot", "lot_no", "batch", "batch_no"}
	expiryAliases      = []string{"expiry_date", "expiry", "expire_date", "best_before"}
	quantityAliases    = []string{"quantity", "qty", "stock_qty", "ea"}
)

// InventoryReadResult is the outcome of reading an inventory upload.
type InventoryReadResult struct {
	Records   []allocation.InventoryRecord
	RowErrors []RowError
}

// ReadInventory parses an uploaded inventory file into normalized
// records with the default row error cap. Missing product_code or
// quantity columns are a structural failure for the whole batch;
// individual short rows are collected as row errors and skipped.
func ReadInventory(r io.Reader, opts ...ParserOption) (*InventoryReadResult, error) {
	return ReadInventoryWithLimit(r, 0, opts...)
}

// ReadInventoryWithLimit reads an inventory upload retaining at most
// maxRowErrors row errors; zero uses the default cap.
func ReadInventoryWithLimit(r io.Reader, maxRowErrors int, opts ...ParserOption) (*InventoryReadResult, error) {
	parser, err := NewCSVParser(r, opts...)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}

	codeIdx := parser.ColumnIndex(productCodeAliases...)
	if codeIdx < 0 {
		return nil, &MissingColumnError{Column: "product_code"}
	}
	qtyIdx := parser.ColumnIndex(quantityAliases...)
	if qtyIdx < 0 {
		return nil, &MissingColumnError{Column: "quantity"}
	}
	warehouseIdx := parser.ColumnIndex(warehouseAliases...)
	locationIdx := parser.ColumnIndex(locationAliases...)
	lotIdx := parser.ColumnIndex(lotAliases...)
	expiryIdx := parser.ColumnIndex(expiryAliases...)

	result := &InventoryReadResult{
		Records:   make([]allocation.InventoryRecord, 0),
		RowErrors: make([]RowError, 0),
	}
	errs := NewErrorCollection(maxRowErrors)

	for {
		record, err := parser.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs.Add(RowError{
				Row:     parser.CurrentRow() + 1,
				Code:    ErrCodeImportMalformedRow,
				Message: err.Error(),
			})
			continue
		}
		// Rows shorter than the required columns carry no usable data.
		if len(record) <= codeIdx || len(record) <= qtyIdx {
			errs.Add(RowError{
				Row:     parser.CurrentRow(),
				Code:    ErrCodeImportMalformedRow,
				Message: "row has fewer columns than the header",
			})
			continue
		}

		result.Records = append(result.Records, allocation.InventoryRecord{
			ProductCode: Field(record, codeIdx),
			Warehouse:   Field(record, warehouseIdx),
			Location:    Field(record, locationIdx),
			Lot:         Field(record, lotIdx),
			ExpiryDate:  Field(record, expiryIdx),
			Quantity:    Field(record, qtyIdx),
		})
	}

	if len(result.Records) == 0 && !errs.HasErrors() {
		return nil, ErrNoDataRows
	}

	result.RowErrors = errs.Errors()
	return result, nil
}
