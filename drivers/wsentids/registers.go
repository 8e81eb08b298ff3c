package wsentids

const (
	// 7-bit I²C addresses selected by the SAO strap.
	AddressSAOHigh = 0x38 // SAO high: 011_1000b
	AddressSAOLow  = 0x3F // SAO low:  011_1111b

	// Fixed contents of the DEVICE_ID register.
	DeviceIDValue = 0xA0

	// --- Register sub-addresses (8-bit registers) ---
	regDeviceID   = 0x01 // R
	regTHighLimit = 0x02 // R/W, 0 disables the threshold
	regTLowLimit  = 0x03 // R/W, 0 disables the threshold
	regCtrl       = 0x04 // R/W
	regStatus     = 0x05 // R
	regDataTempL  = 0x06 // R
	regDataTempH  = 0x07 // R
	regSoftReset  = 0x0C // R/W, bit 1 resets the digital blocks

	// --- CTRL bits (0x04) ---
	ctrlOneShot    = 1 << 0 // start a single conversion
	ctrlTimeoutDis = 1 << 1 // disable the SMBus timeout
	ctrlFreeRun    = 1 << 2 // continuous conversion
	ctrlAddrInc    = 1 << 3 // auto-increment register pointer on multi-byte access
	ctrlAvgShift   = 4      // AVG[1:0] at bits 5:4 select the continuous rate
	ctrlBDU        = 1 << 6 // block data update: freeze DATA_T_H/L between reads

	// --- STATUS bits (0x05) ---
	statusBusy     = 1 << 0 // conversion in progress
	statusOverHigh = 1 << 1 // temperature exceeded T_HIGH_LIMIT
	statusUnderLow = 1 << 2 // temperature fell below T_LOW_LIMIT

	// --- SOFT_RESET bits (0x0C) ---
	softResetBit = 1 << 1
)
