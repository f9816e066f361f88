package mpegts

// crc32MPEG2 computes the CRC32 variant ISO/IEC 13818-1 Annex A requires
// for PSI sections (PAT, PMT): non-reflected input/output, polynomial
// 0x04C11DB7, initial value 0xFFFFFFFF, no final XOR. This is distinct
// from every crc32 variant the standard library's hash/crc32 package
// tabulates (IEEE, Castagnoli, Koopman are all reflected), so it is
// computed directly rather than borrowed.
func crc32MPEG2(data []byte) uint32 {
	const poly = uint32(0x04C11DB7)
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b) << 24
		for bit := 0; bit < 8; bit++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
