// Package coldstorage reads the user-maintained cold storage holdings file.
package coldstorage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Device is one physical cold storage device and its holdings.
type Device struct {
	Name     string
	Holdings map[string]decimal.Decimal // asset -> quantity
}

type fileFormat struct {
	Devices []struct {
		Name     string                     `json:"name"`
		Holdings map[string]json.RawMessage `json:"holdings"`
	} `json:"devices"`
}

// LoadDevices loads cold storage devices from a user-maintained JSON file.
//
// Expected format:
//
//	{
//	  "devices": [
//	    {"name": "Trezor 2022", "holdings": {"BTC": "11.08"}}
//	  ]
//	}
//
// Quantities may be JSON numbers or strings. A missing file yields an empty
// list, not an error. Invalid or missing fields are skipped conservatively:
// blank names or assets, unparsable or non-positive quantities. Devices left
// with no valid holdings are omitted.
func LoadDevices(path string) ([]Device, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cold storage file: %w", err)
	}

	var parsed fileFormat
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse cold storage file: %w", err)
	}

	var devices []Device
	for _, entry := range parsed.Devices {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}

		holdings := make(map[string]decimal.Decimal)
		for asset, rawQty := range entry.Holdings {
			symbol := strings.ToUpper(strings.TrimSpace(asset))
			if symbol == "" {
				continue
			}
			qty, ok := parseQuantity(rawQty)
			if !ok || !qty.IsPositive() {
				continue
			}
			holdings[symbol] = qty
		}

		if len(holdings) == 0 {
			continue
		}
		devices = append(devices, Device{Name: name, Holdings: holdings})
	}

	return devices, nil
}

// parseQuantity accepts both `"1.5"` and `1.5` as quantity values.
func parseQuantity(raw json.RawMessage) (decimal.Decimal, bool) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		qty, err := decimal.NewFromString(strings.TrimSpace(asString))
		if err != nil {
			return decimal.Zero, false
		}
		return qty, true
	}

	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		qty, err := decimal.NewFromString(asNumber.String())
		if err != nil {
			return decimal.Zero, false
		}
		return qty, true
	}

	return decimal.Zero, false
}
