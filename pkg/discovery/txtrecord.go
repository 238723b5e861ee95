package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jpweytjens/karoo-ext/pkg/model"
)

// TXTRecordMap is a key-value map for TXT records.
type TXTRecordMap map[string]string

// EncodeSystemTXT encodes host info to TXT records.
func EncodeSystemTXT(info *SystemInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeySerial:   info.Serial,
		TXTKeyHardware: string(info.Hardware),
	}
	if info.LibVersion != "" {
		txt[TXTKeyLib] = info.LibVersion
	}
	return txt
}

// DecodeSystemTXT decodes TXT records to host info.
func DecodeSystemTXT(txt TXTRecordMap) (*SystemInfo, error) {
	serial, ok := txt[TXTKeySerial]
	if !ok || serial == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySerial)
	}
	return &SystemInfo{
		Serial:     serial,
		Hardware:   model.ParseHardwareType(txt[TXTKeyHardware]),
		LibVersion: txt[TXTKeyLib],
	}, nil
}

// EncodeExtensionTXT encodes extension info to TXT records.
func EncodeExtensionTXT(info *ExtensionInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyID: info.ID,
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	if len(info.DataTypes) > 0 {
		txt[TXTKeyTypes] = strings.Join(info.DataTypes, ",")
	}
	if info.ScansDevices {
		txt[TXTKeyScan] = "1"
	}
	return txt
}

// DecodeExtensionTXT decodes TXT records to extension info.
func DecodeExtensionTXT(txt TXTRecordMap) (*ExtensionInfo, error) {
	id, ok := txt[TXTKeyID]
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyID)
	}

	info := &ExtensionInfo{
		ID:      id,
		Version: txt[TXTKeyVersion],
	}
	if types := txt[TXTKeyTypes]; types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				info.DataTypes = append(info.DataTypes, t)
			}
		}
	}
	switch txt[TXTKeyScan] {
	case "", "0":
	case "1":
		info.ScansDevices = true
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyScan, txt[TXTKeyScan])
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if !found && k == "" {
			continue
		}
		txt[k] = v
	}
	return txt
}

// ValidateTXT checks the encoded size of txt against MaxTXTRecordSize.
func ValidateTXT(txt TXTRecordMap) error {
	size := 0
	for _, s := range TXTRecordsToStrings(txt) {
		size += len(s) + 1
	}
	if size > MaxTXTRecordSize {
		return fmt.Errorf("%w: %d", ErrTXTTooLarge, size)
	}
	return nil
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty instance name", ErrMissingRequired)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
