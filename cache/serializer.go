package cache

import (
	"github.com/bytedance/sonic"

	"github.com/restcache/restcache/types"
	"github.com/restcache/restcache/utils"
)

// SonicSerializer is the default wire codec for remote backends. Values
// round-trip through JSON, so readers get back generic structures
// (map[string]interface{}, []interface{}) rather than the original Go types;
// callers re-decode into their own shapes.
type SonicSerializer struct{}

func (s *SonicSerializer) Marshal(value interface{}) ([]byte, error) {
	data, err := utils.Marshal(value)
	if err != nil {
		return nil, types.WrapError(err, "failed to serialize cache value")
	}
	return data, nil
}

func (s *SonicSerializer) Unmarshal(data []byte, target interface{}) error {
	return sonic.ConfigDefault.Unmarshal(data, target)
}
