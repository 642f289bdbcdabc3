package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
)

// BytesMD5 计算字节数组MD5
func BytesMD5(data []byte) string {
	hash := md5.New()
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil))
}

// Fingerprint 内容指纹：MD5 + 字节数，同名文件内容不同也能区分
func Fingerprint(data []byte) string {
	return BytesMD5(data) + ":" + strconv.Itoa(len(data))
}
