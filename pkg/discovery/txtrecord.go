package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for info.
func EncodeTXT(info *ServiceInfo) TXTRecordMap {
	types := make([]string, len(info.Types))
	for i, t := range info.Types {
		types[i] = string(t)
	}
	sort.Strings(types)

	return TXTRecordMap{
		TXTKeyVersion: info.Version,
		TXTKeyAPIPath: info.APIPath,
		TXTKeyTypes:   strings.Join(types, ","),
	}
}

// DecodeTXT parses TXT records into info fields. Instance and Port are not
// part of the TXT data and are left zero.
func DecodeTXT(txt TXTRecordMap) (*ServiceInfo, error) {
	info := &ServiceInfo{}

	var ok bool
	if info.APIPath, ok = txt[TXTKeyAPIPath]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyAPIPath)
	}
	info.Version = txt[TXTKeyVersion]
	if s := txt[TXTKeyTypes]; s != "" {
		for _, t := range strings.Split(s, ",") {
			info.Types = append(info.Types, output.Type(t))
		}
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings in
// key order.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// validate checks info against mDNS limits.
func validate(info *ServiceInfo, txt []string) error {
	if info.Port <= 0 || info.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, info.Port)
	}
	if info.Instance == "" {
		return fmt.Errorf("%w: instance name", ErrMissingRequired)
	}
	if len(info.Instance) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	size := 0
	for _, s := range txt {
		size += len(s) + 1
	}
	if size > MaxTXTRecordSize {
		return ErrTXTTooLarge
	}
	return nil
}
