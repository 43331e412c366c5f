package db_models

import (
	"fmt"
	"strconv"
	"strings"
)

// OrderMeta is the canonical view of checkout metadata. Historical rows carry the
// same fields under several names; NormalizeOrderMeta is the only place that knows them.
type OrderMeta struct {
	Name           string `json:"name,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
	Comuna         string `json:"comuna,omitempty"`
	Region         string `json:"region,omitempty"`
	DeliveryMethod string `json:"deliveryMethod,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// First match wins.
var metaAliases = struct {
	name, phone, address, comuna, region, delivery, notes []string
}{
	name:     []string{"name", "nombre", "fullName", "full_name", "customerName"},
	phone:    []string{"phone", "telefono", "contact_phone", "phone_number", "phoneContact"},
	address:  []string{"address", "direccion", "direccion_completa", "addressLine", "shipping_address", "address_line"},
	comuna:   []string{"comuna", "commune", "city", "ciudad"},
	region:   []string{"region", "regionName", "region_name", "shippingRegion"},
	delivery: []string{"deliveryMethod", "envio", "delivery_method", "shippingMethod", "shipping_method"},
	notes:    []string{"notes", "notas", "comentarios", "comments"},
}

func NormalizeOrderMeta(raw map[string]interface{}) OrderMeta {
	return OrderMeta{
		Name:           pick(raw, metaAliases.name),
		Phone:          pick(raw, metaAliases.phone),
		Address:        pick(raw, metaAliases.address),
		Comuna:         pick(raw, metaAliases.comuna),
		Region:         pick(raw, metaAliases.region),
		DeliveryMethod: pick(raw, metaAliases.delivery),
		Notes:          pick(raw, metaAliases.notes),
	}
}

func pick(raw map[string]interface{}, keys []string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(stringify(v)); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]interface{}, []interface{}:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
