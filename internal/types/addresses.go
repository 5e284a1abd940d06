package types

// HardwareAddress represents the address of a hardware
// register of the Game Boy. The hardware IO are mapped
// to memory addresses 0xFF00 - 0xFF7F & 0xFFFF.
type HardwareAddress = uint16

const (
	// SB is the address of the SB hardware register. The SB
	// hardware register holds the byte being shifted in and out
	// of the serial port.
	SB HardwareAddress = 0xFF01
	// SC is the address of the SC hardware register. The SC
	// hardware register is used to control the serial port.
	//
	//  Bit 7 - Transfer Start Flag (0=No transfer, 1=Start)
	//  Bit 1 - Clock Speed (0=Normal, 1=Fast) **CGB Mode Only**
	//  Bit 0 - Shift Clock (0=External Clock, 1=Internal Clock)
	SC HardwareAddress = 0xFF02
	// IF is the address of the IF hardware register. The IF
	// hardware register is used to request interrupts.
	//
	//  Bit 0: V-Blank Interrupt Request (INT 40h)  (1=Request)
	//  Bit 1: LCD STAT Interrupt Request (INT 48h) (1=Request)
	//  Bit 2: Timer Interrupt Request (INT 50h)    (1=Request)
	//  Bit 3: Serial Interrupt Request (INT 58h)   (1=Request)
	//  Bit 4: Joypad Interrupt Request (INT 60h)   (1=Request)
	IF HardwareAddress = 0xFF0F
	// LCDC is the address of the LCDC hardware register. The LCDC
	// hardware register is used to control the LCD.
	//
	// The register is set as follows:
	//
	//  Bit 7: LCD Enable             (0=Off, 1=On)
	//  Bit 6: Window Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
	//  Bit 5: Window Display Enable          (0=Off, 1=On)
	//  Bit 4: BG & Window Tile Data Select   (0=8800-97FF, 1=8000-8FFF)
	//  Bit 3: BG Tile Map Display Select     (0=9800-9BFF, 1=9C00-9FFF)
	//  Bit 2: OBJ (Sprite) Size              (0=8x8, 1=8x16)
	//  Bit 1: OBJ (Sprite) Display Enable    (0=Off, 1=On)
	//  Bit 0: BG Display (for CGB see below) (0=Off, 1=On)
	LCDC HardwareAddress = 0xFF40
	// STAT is the address of the STAT hardware register. The STAT
	// hardware register contains the status of the LCD, and is used
	// to report the mode the LCD is in, and to request LCD interrupts.
	//
	//  The register is set as follows:
	//
	//  Bit 6: LYC=LY Coincidence Interrupt (1=Enable) (Read/Write)
	//  Bit 5: mode 2 OAM Interrupt         (1=Enable) (Read/Write)
	//  Bit 4: mode 1 V-Blank Interrupt     (1=Enable) (Read/Write)
	//  Bit 3: mode 0 H-Blank Interrupt     (1=Enable) (Read/Write)
	//  Bit 2: Coincidence Flag  (0:LYC<>LY, 1:LYC=LY) (Read Only)
	//  Bit 1-0: mode Flag       (mode 0-3, see below) (Read Only)
	//           0: During H-Blank
	//           1: During V-Blank
	//           2: During Searching OAM-RAM
	//           3: During Transfering Data to LCD Driver
	STAT HardwareAddress = 0xFF41
	// SCY is the address of the SCY hardware register. The SCY
	// hardware register is used to control the vertical scroll
	// position of the background.
	SCY HardwareAddress = 0xFF42
	// SCX is the address of the SCX hardware register. The SCX
	// hardware register is used to control the horizontal scroll
	// position of the background.
	SCX HardwareAddress = 0xFF43
	// LY is the address of the LY hardware register. The LY
	// hardware register is the current scanline being rendered.
	// The range of values for LY is 0-153. Writing any value to
	// LY resets it to 0.
	LY HardwareAddress = 0xFF44
	// LYC is the address of the LYC hardware register. This register
	// is compared to LY. When they are the same, the coincidence flag
	// in the STAT hardware register is set, and a STAT interrupt is
	// requested if the coincidence interrupt flag is set.
	LYC HardwareAddress = 0xFF45
	// DMA is the address of the DMA hardware register. Writing a value
	// to DMA transfers 160 bytes of data from ROM or RAM to OAM.
	DMA HardwareAddress = 0xFF46
	// BGP is the address of the BGP hardware register. The BGP
	// hardware register is used to set the shade of grey to use for
	// the background palette. BGP is only used in DMG mode.
	//
	// The palette is set as follows:
	//  Bit 7-6 - Shade for Color Number 3
	//  Bit 5-4 - Shade for Color Number 2
	//  Bit 3-2 - Shade for Color Number 1
	//  Bit 1-0 - Shade for Color Number 0
	BGP HardwareAddress = 0xFF47
	// OBP0 is the address of the OBP0 hardware register. The OBP0
	// hardware register is used to set the shade of grey to use for
	// sprite palette 0. OBP0 is only used in DMG mode.
	//
	// The palette is set as follows:
	//  Bit 7-6 - Shade for Color Number 3
	//  Bit 5-4 - Shade for Color Number 2
	//  Bit 3-2 - Shade for Color Number 1
	//  Bit 1-0 - Ignored (always transparent)
	OBP0 HardwareAddress = 0xFF48
	// OBP1 is the address of the OBP1 hardware register. The OBP1
	// hardware register is used to set the shade of grey to use for
	// sprite palette 1. OBP1 is only used in DMG mode.
	//
	// The palette is set as follows:
	//  Bit 7-6 - Shade for Color Number 3
	//  Bit 5-4 - Shade for Color Number 2
	//  Bit 3-2 - Shade for Color Number 1
	//  Bit 1-0 - Ignored (always transparent)
	OBP1 HardwareAddress = 0xFF49
	// WY is the address of the WY hardware register. The WY
	// hardware register is used to set the Y position of the window.
	// The window is visible when (if enabled) both WY and WX
	// are in the ranges WX=0..166, WY=0..143 respectively. Values
	// WX=7 and WY=0 locates the window at the top left of the LCD.
	WY HardwareAddress = 0xFF4A
	// WX is the address of the WX hardware register. The WX
	// hardware register is used to set the X position of the window.
	// The window is visible when (if enabled) both WY and WX
	// are in the ranges WX=0..166, WY=0..143 respectively. Values
	// WX=7 and WY=0 locates the window at the top left of the LCD.
	WX HardwareAddress = 0xFF4B
	// VBK is the address of the VBK hardware register. The VBK
	// hardware register is used to select the current VRAM bank.
	// VBK is only used in CGB mode.
	//
	// The register is set as follows:
	//  Bit 0   - VRAM Bank (0=Bank 0, 1=Bank 1)
	VBK HardwareAddress = 0xFF4F
	// HDMA1 and HDMA2 hold the high and low byte of the VRAM DMA
	// source address. The lower 4 bits of the address are ignored.
	HDMA1 HardwareAddress = 0xFF51
	HDMA2 HardwareAddress = 0xFF52
	// HDMA3 and HDMA4 hold the VRAM DMA destination, bits 12-4 only.
	HDMA3 HardwareAddress = 0xFF53
	HDMA4 HardwareAddress = 0xFF54
	// HDMA5 starts a VRAM DMA transfer. Bit 7 selects the mode
	// (0=General Purpose, 1=HBlank) and bits 6-0 the number of
	// 16 byte blocks to transfer, minus one.
	HDMA5 HardwareAddress = 0xFF55
	// RP is the address of the RP hardware register, which controls
	// the infrared communications port. RP is only used in CGB mode.
	//
	// The register is set as follows:
	//  Bit 7-6 - Data Read Enable (0=Disable, 3=Enable)
	//  Bit 1   - Read Data (0=Receiving IR Signal, 1=Normal)
	//  Bit 0   - Write Data (0=LED Off, 1=LED On)
	RP HardwareAddress = 0xFF56
	// BCPS is the address of the BCPS hardware register. The BCPS
	// hardware register is used to set the background palette index
	// and auto increment flag. BCPS is only used in CGB mode.
	//
	// The register is set as follows:
	//  Bit 7   - Auto Increment  (0=Off, 1=On)
	// Bit 5-0 - Background Palette Index  ($00-$3F)
	BCPS HardwareAddress = 0xFF68
	// BCPD is the address of the BCPD hardware register. The BCPD
	// hardware register is used to read and write the background
	// palette data. BCPD is only used in CGB mode.
	//
	// The register is set as follows:
	//  Bit   0 - 4 = Red Intensity   ($00-$1F)
	//  Bit   5 - 9 = Green Intensity ($00-$1F)
	//  Bit 10 - 14 = Blue Intensity  ($00-$1F)
	BCPD HardwareAddress = 0xFF69
	// OCPS is the address of the OCPS hardware register. The OCPS
	// hardware register is used to set the sprite palette index
	// and auto increment flag. OCPS is only used in CGB mode.
	//
	// The register is set as follows:
	//  Bit 7   - Auto Increment  (0=Off, 1=On)
	// Bit 5-0 - Sprite Palette Index  ($00-$3F)
	OCPS HardwareAddress = 0xFF6A
	// OCPD is the address of the OCPD hardware register. The OCPD
	// hardware register is used to read and write the sprite
	// palette data. OCPD is only used in CGB mode.
	//
	// The register is set as follows:
	//  Bit   0 - 4 = Red Intensity   ($00-$1F)
	//  Bit   5 - 9 = Green Intensity ($00-$1F)
	//  Bit 10 - 14 = Blue Intensity  ($00-$1F)
	OCPD HardwareAddress = 0xFF6B
	// IE is the address of the IE hardware register.
	IE HardwareAddress = 0xFFFF
)

const (
	// VRAMStart is the first address of video RAM.
	VRAMStart uint16 = 0x8000
	// VRAMSize is the size of a single VRAM bank.
	VRAMSize = 0x2000
	// OAMStart is the first address of the object attribute table.
	OAMStart uint16 = 0xFE00
	// OAMSize is the size of the object attribute table, 40 entries
	// of 4 bytes each.
	OAMSize = 0xA0
)
