/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package models pkg/models/carrier.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errUnknownCarrier = errors.New("unknown carrier")

// Carrier selects the billing path used at login.
type Carrier int

const (
	CarrierCampus Carrier = iota
	CarrierMobile
	CarrierUnicom
	CarrierTelecom
)

// service codes sent verbatim in the login form, keyed by carrier.
var serviceCodes = map[Carrier]string{
	CarrierCampus:  "%e6%a0%a1%e5%9b%ad%e7%bd%91",
	CarrierMobile:  "%E4%B8%AD%E5%9B%BD%E7%A7%BB%E5%8A%A8",
	CarrierUnicom:  "%e4%b8%ad%e5%9b%bd%e8%81%94%e9%80%9a",
	CarrierTelecom: "%e4%b8%ad%e5%9b%bd%e7%94%b5%e4%bf%a1",
}

var carrierNames = map[Carrier]string{
	CarrierCampus:  "校园网",
	CarrierMobile:  "中国移动",
	CarrierUnicom:  "中国联通",
	CarrierTelecom: "中国电信",
}

var carrierAliases = map[string]Carrier{
	"校园网":     CarrierCampus,
	"中国移动":    CarrierMobile,
	"中国联通":    CarrierUnicom,
	"中国电信":    CarrierTelecom,
	"campus":  CarrierCampus,
	"mobile":  CarrierMobile,
	"cmcc":    CarrierMobile,
	"unicom":  CarrierUnicom,
	"telecom": CarrierTelecom,
}

// ParseCarrier accepts the portal's display names, the numeric aliases
// "0".."3" and a few English aliases.
func ParseCarrier(s string) (Carrier, error) {
	s = strings.TrimSpace(s)

	if c, ok := carrierAliases[strings.ToLower(s)]; ok {
		return c, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		c := Carrier(n)
		if c.Valid() {
			return c, nil
		}
	}

	return CarrierCampus, fmt.Errorf("%w: %q", errUnknownCarrier, s)
}

// Valid reports whether c is one of the known carriers.
func (c Carrier) Valid() bool {
	_, ok := serviceCodes[c]

	return ok
}

// ServiceCode returns the opaque code the portal expects in the "service" field.
func (c Carrier) ServiceCode() string {
	if code, ok := serviceCodes[c]; ok {
		return code
	}

	return serviceCodes[CarrierCampus]
}

func (c Carrier) String() string {
	if name, ok := carrierNames[c]; ok {
		return name
	}

	return strconv.Itoa(int(c))
}

func (c Carrier) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts either a name/alias string or a numeric alias.
func (c *Carrier) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		parsed := Carrier(int(value))
		if !parsed.Valid() {
			return fmt.Errorf("%w: %v", errUnknownCarrier, value)
		}

		*c = parsed

		return nil
	case string:
		parsed, err := ParseCarrier(value)
		if err != nil {
			return err
		}

		*c = parsed

		return nil
	default:
		return errUnknownCarrier
	}
}
