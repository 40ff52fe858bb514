// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package password generates initial credentials for lab VMs and
// practice directory users.
package password

import (
	"math/rand"

	"github.com/juju/utils/v4"
)

// Generate returns a random password containing at least one each of
// lower-alpha, upper-alpha and digit characters, which satisfies both
// the VM admin and Entra ID password policies. Allocate 8 of each
// (randomly), then shuffle.
func Generate() string {
	validRunes := append(utils.LowerAlpha, utils.Digits...)
	validRunes = append(validRunes, utils.UpperAlpha...)

	lowerAlpha := utils.RandomString(8, utils.LowerAlpha)
	upperAlpha := utils.RandomString(8, utils.UpperAlpha)
	digits := utils.RandomString(8, utils.Digits)
	mixed := utils.RandomString(8, validRunes)
	result := []rune(lowerAlpha + upperAlpha + digits + mixed)
	for i := len(result) - 1; i >= 1; i-- {
		j := rand.Intn(i + 1)
		result[i], result[j] = result[j], result[i]
	}
	return string(result)
}
