package world

import "strings"

// DefaultBodyColor is the colour of every body part of a fresh figure.
const DefaultBodyColor = "#d9bc00"

// BodyColors holds the hex colour of each body part.
type BodyColors struct {
	Head     string `json:"head"`
	Torso    string `json:"torso"`
	LeftArm  string `json:"left_arm"`
	RightArm string `json:"right_arm"`
	LeftLeg  string `json:"left_leg"`
	RightLeg string `json:"right_leg"`
}

// DefaultBodyColors paints every part in DefaultBodyColor.
func DefaultBodyColors() BodyColors {
	c := DefaultBodyColor
	return BodyColors{Head: c, Torso: c, LeftArm: c, RightArm: c, LeftLeg: c, RightLeg: c}
}

// byCode returns the colour addressed by an attribute code (K to P).
func (b *BodyColors) byCode(code byte) (*string, bool) {
	switch code {
	case 'K':
		return &b.Head, true
	case 'L':
		return &b.Torso, true
	case 'M':
		return &b.LeftArm, true
	case 'N':
		return &b.RightArm, true
	case 'O':
		return &b.LeftLeg, true
	case 'P':
		return &b.RightLeg, true
	}
	return nil, false
}

// Assets holds the asset ids worn by a figure. Zero means none.
type Assets struct {
	Tool   uint32 `json:"tool"`
	Face   uint32 `json:"face"`
	Hat1   uint32 `json:"hat1"`
	Hat2   uint32 `json:"hat2"`
	Hat3   uint32 `json:"hat3"`
	Shirt  uint32 `json:"shirt"`
	Pants  uint32 `json:"pants"`
	TShirt uint32 `json:"tshirt"`
}

func (a *Assets) byCode(code byte) (*uint32, bool) {
	switch code {
	case 'Q':
		return &a.Face, true
	case 'U':
		return &a.Hat1, true
	case 'V':
		return &a.Hat2, true
	case 'W':
		return &a.Hat3, true
	}
	return nil, false
}

// Outfit is a set of appearance changes applied to a player or bot in one
// packet. Build it with the chainable setters and pass it to SetOutfit.
type Outfit struct {
	codes  []byte
	colors map[byte]string
	assets map[byte]uint32
}

// NewOutfit creates an empty outfit.
func NewOutfit() *Outfit {
	return &Outfit{
		colors: make(map[byte]string),
		assets: make(map[byte]uint32),
	}
}

// OutfitOf copies the complete appearance of a player.
func OutfitOf(p *Player) *Outfit {
	o := NewOutfit()
	return o.Hat1(p.Assets.Hat1).
		Hat2(p.Assets.Hat2).
		Hat3(p.Assets.Hat3).
		Face(p.Assets.Face).
		Head(p.Colors.Head).
		Torso(p.Colors.Torso).
		RightArm(p.Colors.RightArm).
		LeftArm(p.Colors.LeftArm).
		LeftLeg(p.Colors.LeftLeg).
		RightLeg(p.Colors.RightLeg)
}

func (o *Outfit) mark(code byte) {
	for _, c := range o.codes {
		if c == code {
			return
		}
	}
	o.codes = append(o.codes, code)
}

func (o *Outfit) color(code byte, hex string) *Outfit {
	o.colors[code] = hex
	o.mark(code)
	return o
}

func (o *Outfit) asset(code byte, id uint32) *Outfit {
	o.assets[code] = id
	o.mark(code)
	return o
}

func (o *Outfit) Hat1(id uint32) *Outfit { return o.asset('U', id) }
func (o *Outfit) Hat2(id uint32) *Outfit { return o.asset('V', id) }
func (o *Outfit) Hat3(id uint32) *Outfit { return o.asset('W', id) }
func (o *Outfit) Face(id uint32) *Outfit { return o.asset('Q', id) }

func (o *Outfit) Head(hex string) *Outfit     { return o.color('K', hex) }
func (o *Outfit) Torso(hex string) *Outfit    { return o.color('L', hex) }
func (o *Outfit) RightArm(hex string) *Outfit { return o.color('N', hex) }
func (o *Outfit) LeftArm(hex string) *Outfit  { return o.color('M', hex) }
func (o *Outfit) LeftLeg(hex string) *Outfit  { return o.color('O', hex) }
func (o *Outfit) RightLeg(hex string) *Outfit { return o.color('P', hex) }

// Body sets every body part to one colour.
func (o *Outfit) Body(hex string) *Outfit {
	return o.Head(hex).Torso(hex).RightArm(hex).LeftArm(hex).LeftLeg(hex).RightLeg(hex)
}

// Codes returns the attribute codes touched by the outfit, in the order
// they were first set.
func (o *Outfit) Codes() string {
	var sb strings.Builder
	sb.Write(o.codes)
	return sb.String()
}

func (o *Outfit) apply(colors *BodyColors, assets *Assets) {
	for code, hex := range o.colors {
		if dst, ok := colors.byCode(code); ok {
			*dst = hex
		}
	}
	for code, id := range o.assets {
		if dst, ok := assets.byCode(code); ok {
			*dst = id
		}
	}
}
