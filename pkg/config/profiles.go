package config

import "sort"

// Profile is a named set of defaults for one mint and wallet pair
type Profile struct {
	Name           string
	Mint           string
	TokenName      string
	Symbol         string
	URI            string
	KeypairPath    string
	MinBalance     string
	ExpectedWallet string
}

const tokenMetadataURI = "https://ym747.github.io/yogi-token/metadata.json"

var profiles = map[string]Profile{
	"togi": {
		Name:        "togi",
		Mint:        "34G3jKGHaUm28SV21HMmojH8KNwZZedJsQqVXMLEVtXf",
		TokenName:   "TOGI Token",
		Symbol:      "TOGI",
		URI:         tokenMetadataURI,
		KeypairPath: "~/.config/solana/togi_wallet.json",
		MinBalance:  "0.01",
	},
	"yogi": {
		Name:           "yogi",
		Mint:           "8ovoXzA8a4H1gVx9Va7S5MQtK6JQJJt86RGaNyW5YQAg",
		TokenName:      "YOGI Token",
		Symbol:         "YOGI",
		URI:            tokenMetadataURI,
		KeypairPath:    "~/.config/solana/id.json",
		MinBalance:     "0.01",
		ExpectedWallet: "3cBcLavcRyX4XwxpMnyzZQQtW3DxHdt1Wp1fSJSRor1A",
	},
}

// LookupProfile returns a built-in profile by name
func LookupProfile(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// Profiles lists the built-in profiles sorted by name
func Profiles() []Profile {
	list := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
