package driver

import (
	"fmt"
	"math/rand"
	"strings"
)

// Identity is the synthetic shopper filled into checkout forms
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Zip   string `json:"zip"`
}

var (
	firstNames = []string{"John", "Jane", "Michael", "Sarah", "David", "Emily"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia"}
	domains    = []string{"gmail.com", "yahoo.com", "hotmail.com", "outlook.com"}

	defaultZips = []string{"10001", "10002", "10003"}
)

// IdentityGenerator produces random shopper identities from a ZIP code list
type IdentityGenerator struct {
	zips []string
}

// NewIdentityGenerator creates a generator; an empty ZIP list falls back to
// a small default set.
func NewIdentityGenerator(zips []string) *IdentityGenerator {
	if len(zips) == 0 {
		zips = defaultZips
	}
	return &IdentityGenerator{zips: zips}
}

// Generate returns a fresh random identity
func (g *IdentityGenerator) Generate() Identity {
	name := fmt.Sprintf("%s %s", pick(firstNames), pick(lastNames))
	user := strings.ReplaceAll(strings.ToLower(name), " ", ".")
	return Identity{
		Name:  name,
		Email: fmt.Sprintf("%s%d@%s", user, 100+rand.Intn(900), pick(domains)),
		Phone: fmt.Sprintf("%d%d%d", 200+rand.Intn(800), 200+rand.Intn(800), 1000+rand.Intn(9000)),
		Zip:   pick(g.zips),
	}
}

func pick(values []string) string {
	return values[rand.Intn(len(values))]
}
