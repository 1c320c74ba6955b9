package discord

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const DiscordCreation = 1420070400000

var null = []byte("null")

// Snowflake is a discord identifier. It is sent as a string over json and
// as a plain integer over msgpack.
type Snowflake int64

func (s Snowflake) IsNil() bool {
	return s == 0
}

func (s *Snowflake) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || bytes.Equal(b, null) {
		*s = 0

		return nil
	}

	if b[0] == '"' {
		if len(b) < 2 || b[len(b)-1] != '"' {
			return fmt.Errorf("invalid snowflake %q", b)
		}

		b = b[1 : len(b)-1]
	}

	if len(b) == 0 {
		*s = 0

		return nil
	}

	i, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("failed to unmarshal snowflake: %w", err)
	}

	*s = Snowflake(i)

	return nil
}

func (s Snowflake) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, s.String()), nil
}

func (s Snowflake) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeInt(int64(s))
}

func (s *Snowflake) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return fmt.Errorf("failed to decode snowflake: %w", err)
	}

	switch value := v.(type) {
	case nil:
		*s = 0
	case int64:
		*s = Snowflake(value)
	case uint64:
		*s = Snowflake(value)
	case string:
		if value == "" {
			*s = 0

			return nil
		}

		parsed, err := ParseSnowflake(value)
		if err != nil {
			return err
		}

		*s = parsed
	default:
		return fmt.Errorf("invalid snowflake type %T", v)
	}

	return nil
}

func (s Snowflake) String() string {
	return strconv.FormatInt(int64(s), 10)
}

// Time returns the creation time of the Snowflake.
func (s Snowflake) Time() time.Time {
	msec := (int64(s) >> 22) + DiscordCreation

	return time.UnixMilli(msec)
}

// ParseSnowflake parses a decimal snowflake string.
func ParseSnowflake(str string) (Snowflake, error) {
	i, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse snowflake: %w", err)
	}

	return Snowflake(i), nil
}
