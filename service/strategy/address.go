package strategy

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the program the edition addresses are derived under.
var DefaultProgramID = solana.MustPublicKeyFromBase58("2oAJBBNEGWnxbH65MEWuehjjmbN6Gk9uLiK9Wt6cR3cT")

var collectionSeed = []byte("collection")

// CollectionAddress derives the master every offering is grouped under.
func CollectionAddress(program solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{collectionSeed}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive collection address: %w", err)
	}
	return addr, nil
}

// OfferingAddress derives the master address for offering id of kind.
func OfferingAddress(program solana.PublicKey, kind OfferingKind, id uint64) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(kind), le64(id)}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive %s %d address: %w", kind, id, err)
	}
	return addr, nil
}

// EditionAddress derives the address of edition number of the given master.
func EditionAddress(program, master solana.PublicKey, number uint64) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{master.Bytes(), le64(number)}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive edition %d address: %w", number, err)
	}
	return addr, nil
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
