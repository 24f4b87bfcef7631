package services

import (
	"fmt"
	mathrand "math/rand/v2"
	"strings"
)

var (
	fakerFirstNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael", "Linda",
		"Wei", "Fang", "Hiroshi", "Yuki", "Carlos", "Sofia", "Ahmed", "Fatima",
	}
	fakerLastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
		"Wang", "Li", "Zhang", "Tanaka", "Suzuki", "Rodriguez", "Khan", "Muller",
	}
	fakerDomains   = []string{"example.com", "example.org", "test.dev", "mail.test"}
	fakerCities    = []string{"London", "Paris", "Berlin", "Tokyo", "Shanghai", "New York", "Toronto", "Sydney", "Madrid", "Seoul"}
	fakerCountries = []string{"United Kingdom", "France", "Germany", "Japan", "China", "United States", "Canada", "Australia", "Spain", "Korea"}
	fakerCompanies = []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli", "Stark Industries", "Wayne Enterprises", "Soylent"}
	fakerSuffixes  = []string{"Inc", "LLC", "Ltd", "Group", "Labs"}
	fakerWords     = []string{
		"alpha", "bravo", "cloud", "delta", "echo", "fable", "giant", "harbor",
		"island", "jolly", "kernel", "lumen", "matrix", "nebula", "orbit", "pixel",
		"quartz", "river", "signal", "tensor", "union", "vector", "willow", "zenith",
	}
)

func pick(list []string) string {
	return list[mathrand.IntN(len(list))]
}

// fakeValue 按 kind 生成假数据，未知 kind 返回错误
func fakeValue(kind string) (string, error) {
	switch strings.ToLower(kind) {
	case "", "name":
		return pick(fakerFirstNames) + " " + pick(fakerLastNames), nil
	case "first_name":
		return pick(fakerFirstNames), nil
	case "last_name":
		return pick(fakerLastNames), nil
	case "email":
		return fmt.Sprintf("%s.%s@%s",
			strings.ToLower(pick(fakerFirstNames)), strings.ToLower(pick(fakerLastNames)), pick(fakerDomains)), nil
	case "phone":
		return fmt.Sprintf("+1-%03d-%03d-%04d", 200+mathrand.IntN(800), mathrand.IntN(1000), mathrand.IntN(10000)), nil
	case "city":
		return pick(fakerCities), nil
	case "country":
		return pick(fakerCountries), nil
	case "company":
		return pick(fakerCompanies) + " " + pick(fakerSuffixes), nil
	case "word":
		return pick(fakerWords), nil
	case "sentence":
		n := 4 + mathrand.IntN(5)
		words := make([]string, n)
		for i := range words {
			words[i] = pick(fakerWords)
		}
		s := strings.Join(words, " ")
		return strings.ToUpper(s[:1]) + s[1:] + ".", nil
	case "number":
		return fmt.Sprint(mathrand.IntN(100000)), nil
	default:
		return "", fmt.Errorf("unknown faker kind %q", kind)
	}
}
