package infrared

import "github.com/sigurn/crc8"

// SMBus packet error code: CRC-8, polynomial x8+x2+x+1 (0x07), init 0x00,
// MSB first, no final xor.
var pecTable = crc8.MakeTable(crc8.CRC8)

// PEC computes the packet error code over the given bytes. For a write the
// sequence is wire address, command and payload.
func PEC(data ...byte) byte {
	return crc8.Checksum(data, pecTable)
}
