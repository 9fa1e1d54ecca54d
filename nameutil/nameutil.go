package nameutil

import (
	"fmt"
	"math/rand"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var TitleCaser = cases.Title(language.English)
var LowerCaser = cases.Lower(language.English)

var Adjs []string = []string{
	"breezy",
	"coastal",
	"velvet",
	"linen",
	"amber",
	"dapper",
	"mellow",
	"crisp",
	"bold",
	"pastel",
	"vivid",
	"quiet",
	"golden",
	"urban",
	"retro",
	"woven",
	"misty",
	"sunny",
	"slate",
	"ivory",
	"indigo",
	"sleek",
	"rustic",
	"airy",
}

var Nouns []string = []string{
	"ensemble",
	"silhouette",
	"layer",
	"thread",
	"stitch",
	"palette",
	"drape",
	"hem",
	"cuff",
	"collar",
	"weave",
	"lapel",
	"pleat",
	"seam",
	"tone",
	"fit",
	"look",
	"cut",
}

func RandomAdjective() string {
	pick := rand.Intn(len(Adjs))
	return Adjs[pick]
}

func RandomNounlike() string {
	pick := rand.Intn(len(Nouns))
	return Nouns[pick]
}

// OutfitID builds a readable unique-enough identifier like
// "breezy-hem-3f2a". Uniqueness is enforced by the database index on the
// recommendation row, not here.
func OutfitID() string {
	return fmt.Sprintf("%s-%s-%04x", RandomAdjective(), RandomNounlike(), rand.Intn(0x10000))
}

// DisplayName is the human title of a generated outfit.
func DisplayName(outfitID string) string {
	return TitleCaser.String(outfitID)
}
