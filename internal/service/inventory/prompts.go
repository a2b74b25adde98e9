package inventory

import (
	"fmt"
	"strings"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

const intakeInstructions = `Extract inventory details as a valid JSON array of objects with these keys:
item (required), catalogue_number, price (required, a number in GBP taken exactly as stated, never inflated),
date (DD/MM/YYYY), storage_location, box_label, total_qty (integer), remaining_qty (integer), place_bought.
Use null for anything the text does not mention. Return only the JSON array.`

// fieldInstructions asks for a single field mapping for a voice-filled form.
func fieldInstructions(mode string, vocab *models.Vocabulary, items []string) string {
	return fmt.Sprintf(`Extract the relevant fields for the form mode '%s' as one JSON object.
- update_item_name must match one of these items: %s
- storage_location must match one of these: %s
- box_label must match one of these: %s
- place_bought must match one of these: %s
Quantities (restock_qty, quantity_sold, total_qty) are integers; prices are numbers in GBP.
Return only JSON without any markdown formatting.`,
		mode, list(items), list(vocab.Locations), list(vocab.BoxLabels), list(vocab.Sources))
}

func list(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return "[" + strings.Join(values, ", ") + "]"
}
