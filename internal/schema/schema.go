// Package schema manages extraction schemas: the built-in bank statement
// schema, validation of user-supplied JSON Schemas, and traversal of a
// schema's item-level properties for column projection.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError reports a user-submitted schema that cannot be accepted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid extraction schema: %s", e.Reason)
}

// defaultSchemaJSON is the built-in extraction schema. The field descriptions
// are instructions to the extraction model: the four internal amount fields
// (credit_amount, debit_amount, raw_amount, type_indicator) capture layout
// variants and feed sign resolution; they are never projected into output.
// Kept as a literal so property order is stable.
const defaultSchemaJSON = `{
  "$defs": {
    "Transaction": {
      "title": "Transaction",
      "type": "object",
      "properties": {
        "date": {
          "title": "Transaction Date",
          "type": "string",
          "description": "Date of the transaction in any format found (e.g., DD/MM/YYYY, MM-DD-YYYY)."
        },
        "amount": {
          "title": "Normalized Amount",
          "type": ["string", "null"],
          "description": "Final normalized transaction amount with sign. DO NOT extract directly - this is computed from the other amount fields. Leave empty or null."
        },
        "credit_amount": {
          "title": "Credit Amount",
          "type": ["string", "null"],
          "description": "Money coming INTO the account. Extract from columns labeled: Credit, Cr, Deposits, Money In, Received, or similar. Leave null if no separate credit column exists."
        },
        "debit_amount": {
          "title": "Debit Amount",
          "type": ["string", "null"],
          "description": "Money going OUT of the account. Extract from columns labeled: Debit, Dr, Withdrawals, Money Out, Paid, or similar. Leave null if no separate debit column exists."
        },
        "raw_amount": {
          "title": "Raw Amount",
          "type": ["string", "null"],
          "description": "Generic transaction amount when only ONE amount column exists. Extract the value as-is including signs, parentheses, or Dr/Cr text. Examples: 100.00, -50.00, (75.00), 200.00 Cr."
        },
        "type_indicator": {
          "title": "Type Indicator",
          "type": ["string", "null"],
          "description": "Transaction type indicator if shown in a SEPARATE column from the amount: Dr, Cr, D, C, Debit, Credit. Only populate if the indicator is in its own column."
        },
        "balance": {
          "title": "Balance",
          "type": "string",
          "description": "Account balance after the transaction. Extract the closing/running balance value."
        },
        "remarks": {
          "title": "Remarks",
          "type": "string",
          "description": "Description, narration, or remarks for the transaction. May include payee name, reference numbers, or transaction details."
        },
        "transactionId": {
          "title": "Transaction ID",
          "type": "string",
          "description": "Unique identifier for the transaction such as reference number or cheque number. Leave empty if not available."
        }
      }
    }
  },
  "title": "BankStatementExtraction",
  "type": "object",
  "properties": {
    "transactions": {
      "title": "Transactions",
      "type": "array",
      "items": {"$ref": "#/$defs/Transaction"},
      "description": "List of individual transaction records from the statement tables."
    }
  },
  "required": ["transactions"]
}`

// Default returns the built-in extraction schema as raw JSON.
func Default() json.RawMessage {
	return json.RawMessage(defaultSchemaJSON)
}

// Validate checks that a user-submitted schema is an acceptable JSON Schema
// object. It must parse as an object and carry at least one of "type",
// "properties", or "$defs". Returns a *ValidationError otherwise.
func Validate(raw json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return &ValidationError{Reason: "schema must be a JSON object"}
	}
	if _, ok := obj["type"]; ok {
		return nil
	}
	if _, ok := obj["properties"]; ok {
		return nil
	}
	if _, ok := obj["$defs"]; ok {
		return nil
	}
	return &ValidationError{Reason: "schema must contain 'type', 'properties', or '$defs'"}
}

// FieldNames returns the schema's item-level property names in document
// order. It understands three shapes: a $defs/Transaction definition, a
// nested properties.transactions.items object (inline properties or a
// $ref into $defs), and a flat properties object. Returns nil when the
// schema declares no usable fields.
func FieldNames(raw json.RawMessage) []string {
	root, err := objectFields(raw)
	if err != nil {
		return nil
	}

	if defs, ok := root["$defs"]; ok {
		if txn := objectField(defs, "Transaction"); txn != nil {
			if names := propertyKeys(txn); len(names) > 0 {
				return names
			}
		}
	}

	props, ok := root["properties"]
	if !ok {
		return nil
	}

	txns := objectField(props, "transactions")
	if txns == nil {
		// Flat schema: fields live directly under properties.
		names, _ := objectKeys(props)
		return names
	}

	items := objectField(txns, "items")
	if items == nil {
		return nil
	}
	if names := propertyKeys(items); len(names) > 0 {
		return names
	}

	// items may reference a definition: {"$ref": "#/$defs/Name"}
	var ref struct {
		Ref string `json:"$ref"`
	}
	if err := json.Unmarshal(items, &ref); err == nil && strings.HasPrefix(ref.Ref, "#/$defs/") {
		defName := ref.Ref[strings.LastIndex(ref.Ref, "/")+1:]
		if defs, ok := root["$defs"]; ok {
			if def := objectField(defs, defName); def != nil {
				return propertyKeys(def)
			}
		}
	}
	return nil
}

// propertyKeys returns the ordered keys of an object's "properties" member.
func propertyKeys(obj json.RawMessage) []string {
	props := objectField(obj, "properties")
	if props == nil {
		return nil
	}
	names, _ := objectKeys(props)
	return names
}

// objectFields unmarshals a JSON object into its raw members.
func objectFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// objectField returns the raw value of one member, or nil.
func objectField(raw json.RawMessage, key string) json.RawMessage {
	obj, err := objectFields(raw)
	if err != nil {
		return nil
	}
	return obj[key]
}

// objectKeys returns a JSON object's keys in document order. encoding/json
// maps do not preserve order, so the keys are read with a token scanner;
// column order in dynamic CSV output follows the schema author's order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
